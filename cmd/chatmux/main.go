package main

import "github.com/leofalp/chatmux/internal/cli"

func main() {
	cli.Execute()
}
