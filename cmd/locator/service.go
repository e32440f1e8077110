package main

import (
	"fmt"

	"github.com/spf13/cobra"

	locatorhttp "github.com/usgs/neic-locator-go/internal/http"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Serve locations over HTTP (POST /v1/locate, /v1/locate/hydra)",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := configureLogging()

		collab, err := buildCollaborators()
		if err != nil {
			return err
		}

		router := locatorhttp.SetupRouter(collab, workers)
		addr := fmt.Sprintf(":%d", servicePort)
		log.Infof("locator service listening on %s", addr)
		return router.Run(addr)
	},
}
