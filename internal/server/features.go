package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	clientfeaturesdomain "github.com/smallbiznis/flagship/internal/clientfeatures/domain"
)

type featuresResponse struct {
	Version  int                                     `json:"version"`
	Features []clientfeaturesdomain.ProjectedFeature `json:"features"`
}

const featuresPayloadVersion = 2

func (s *Server) featureQuery(c *gin.Context, consumer clientfeaturesdomain.ConsumerKind) clientfeaturesdomain.Query {
	environment := strings.TrimSpace(c.Query("environment"))
	if environment == "" {
		environment = s.cfg.DefaultFlagEnvironment
	}
	return clientfeaturesdomain.Query{
		Environment: environment,
		Project:     strings.TrimSpace(c.Query("project")),
		UserID:      strings.TrimSpace(c.GetHeader("X-User-ID")),
		Consumer:    consumer,
	}
}

// GetClientFeatures serves the full environment payload for one consumer
// kind. The consumer is fixed by the route, not the caller.
func (s *Server) GetClientFeatures(consumer clientfeaturesdomain.ConsumerKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := s.featureQuery(c, consumer)

		features, err := s.featureSvc.GetFeatures(c.Request.Context(), q)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, featuresResponse{
			Version:  featuresPayloadVersion,
			Features: features,
		})
	}
}

func (s *Server) GetClientFeature(consumer clientfeaturesdomain.ConsumerKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := s.featureQuery(c, consumer)
		q.FeatureName = strings.TrimSpace(c.Param("name"))

		feature, err := s.featureSvc.GetFeature(c.Request.Context(), q)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, feature)
	}
}

func (s *Server) GetAdminFeatures(c *gin.Context) {
	s.GetClientFeatures(clientfeaturesdomain.ConsumerAdmin)(c)
}

func (s *Server) GetAdminFeature(c *gin.Context) {
	s.GetClientFeature(clientfeaturesdomain.ConsumerAdmin)(c)
}
