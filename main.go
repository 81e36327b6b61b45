package main

import "github.com/ProdMoon/go-vmm/cmd"

func main() {
	cmd.Execute()
}
