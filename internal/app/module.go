package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/mcpfactory/stripe-service/internal/app/api/server"
	"github.com/mcpfactory/stripe-service/internal/app/service/payment"
	"github.com/mcpfactory/stripe-service/internal/app/service/reconciler"
	"github.com/mcpfactory/stripe-service/internal/platform/db"
	"github.com/mcpfactory/stripe-service/internal/platform/keyservice"
	"github.com/mcpfactory/stripe-service/internal/platform/runs"
	"github.com/mcpfactory/stripe-service/internal/platform/stripeapi"
	"github.com/mcpfactory/stripe-service/pkg/config"
	"github.com/mcpfactory/stripe-service/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	stripeapi.Module,
	keyservice.Module,
	runs.Module,
	reconciler.Module,
	payment.Module,
)
