package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/app"
)

func main() {
	if err := app.Main(os.Args[1:]); err != nil {
		logrus.Fatalf("application error: %v", err)
	}
}
