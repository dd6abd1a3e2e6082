package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "homeframe",
	Short: "A self-hosted family photo server with on-device face recognition",
	Long: `Homeframe serves a family photo library and groups the people in it.
Uploaded photos are scanned for faces, each face is embedded and matched
against known persons, and the resulting clusters can be named, merged
and browsed through the HTTP API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
