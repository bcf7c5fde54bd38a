package main

import (
	"github.com/articvpn/vpnctl/internal/cli"
)

func main() {
	cli.Execute()
}
