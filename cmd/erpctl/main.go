package main

import "github.com/goliatone/go-erp-session/cmd/erpctl/cmd"

func main() {
	cmd.Execute()
}
