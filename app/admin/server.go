package admin

import (
	"net/http"
	"time"

	"github.com/canopy-network/stakedrop/app/admin/controller"
	"github.com/canopy-network/stakedrop/app/admin/types"
	"github.com/canopy-network/stakedrop/pkg/utils"
	"go.uber.org/zap"
)

// NewServer attaches the admin HTTP server to app.
func NewServer(app *types.App) error {
	router, err := controller.NewController(app).NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3000")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           controller.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))
	return nil
}
