package main

import (
	"github.com/parloir/parloir/internal/server"
)

func main() {
	srv := server.NewServer()
	srv.Run()
}
