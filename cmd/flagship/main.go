package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/flagship/internal/clock"
	"github.com/smallbiznis/flagship/internal/config"
	"github.com/smallbiznis/flagship/internal/migration"
	"github.com/smallbiznis/flagship/internal/observability"
	"github.com/smallbiznis/flagship/internal/server"
	"github.com/smallbiznis/flagship/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
