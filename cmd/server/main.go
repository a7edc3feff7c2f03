package main

import (
	"log"

	approuters "github.com/abhinay-x/skillnest-connect-sub002/internal/app_routers"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/configuration"
)

func main() {
	container, err := configuration.BuildContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	approuters.StartServer(container)
}
