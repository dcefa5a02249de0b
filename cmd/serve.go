package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0xArtex/excalidraw-mcp/pkg/broadcast"
	"github.com/0xArtex/excalidraw-mcp/pkg/canvas"
	"github.com/0xArtex/excalidraw-mcp/pkg/export"
	"github.com/0xArtex/excalidraw-mcp/pkg/idgen"
	"github.com/0xArtex/excalidraw-mcp/pkg/service"
	"github.com/0xArtex/excalidraw-mcp/pkg/stores"
)

var (
	hostFlag string
	portFlag int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the canvas server",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, srv := newCanvasStack()
			defer scenes.Registry().StopSweeper()
			return srv.Start(listenAddr())
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().StringVarP(&hostFlag, "host", "H", "", "Host address to bind to (overrides config)")
	serveCmd.PersistentFlags().IntVarP(&portFlag, "port", "p", 0, "Port to serve on (overrides config)")
}

func listenAddr() string {
	host := hostFlag
	if host == "" {
		host = viper.GetString("server.host")
	}
	port := portFlag
	if port == 0 {
		port = viper.GetInt("server.port")
	}
	return fmt.Sprintf("%s:%d", host, port)
}

/*
newCanvasStack wires the full stack from configuration: id generator,
session registry with its hourly sweep, broadcast bus, screenshot exporter
and the scene manager every surface shares.
*/
func newCanvasStack() (*service.SceneManager, *service.CanvasServer) {
	baseURL := viper.GetString("server.baseurl")
	exportDir := viper.GetString("export.dir")

	registry := stores.NewRegistry(idgen.New())
	registry.StartSweeper(
		viper.GetDuration("session.sweepinterval"),
		viper.GetDuration("session.ttl"),
	)

	exporter := export.NewRodExporter(export.Config{
		CanvasBaseURL: baseURL,
		OutputDir:     exportDir,
		PublicBaseURL: baseURL,
		WaitSelector:  viper.GetString("export.waitselector"),
		Timeout:       viper.GetDuration("export.timeout"),
		S3:            s3Config(),
	})

	scenes := service.NewSceneManager(
		registry,
		broadcast.NewBus(),
		canvas.NewTypeSet(viper.GetStringSlice("canvas.elementtypes")),
		exporter,
		baseURL,
	)

	return scenes, service.NewCanvasServer(scenes, exportDir)
}

func s3Config() *export.S3Config {
	if viper.GetString("export.s3.endpoint") == "" {
		return nil
	}
	return &export.S3Config{
		Endpoint:  viper.GetString("export.s3.endpoint"),
		AccessKey: viper.GetString("export.s3.accesskey"),
		SecretKey: viper.GetString("export.s3.secretkey"),
		Bucket:    viper.GetString("export.s3.bucket"),
		UseSSL:    viper.GetBool("export.s3.usessl"),
		PublicURL: viper.GetString("export.s3.publicurl"),
	}
}

var longServe = `
Serve the collaborative canvas over HTTP.

The server exposes the REST write surface, the websocket real-time channel
and the export artifacts directory.

Examples:
  # Serve on the configured address
  excalidraw-mcp serve

  # Serve on a specific port
  excalidraw-mcp serve --port 8080
`
