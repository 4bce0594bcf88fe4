package query

import (
	"net/http"
	"time"

	"github.com/canopy-network/stakedrop/app/query/controller"
	"github.com/canopy-network/stakedrop/app/query/types"
	"github.com/canopy-network/stakedrop/pkg/utils"
	"go.uber.org/zap"
)

func NewServer(app *types.App) error {
	router, err := controller.NewController(app).NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3001")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           controller.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))
	return nil
}
