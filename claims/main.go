package main

import (
	"os"

	"github.com/medtrack/claims-app/claims/claimscli"
	"github.com/medtrack/claims-app/log"
)

func main() {
	app := claimscli.GetApp()
	if err := app.Run(os.Args); err != nil {
		log.API.Fatal(err)
	}
}
