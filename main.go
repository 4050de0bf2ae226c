package main

import "github.com/frahmantamala/church-cms/cmd"

func main() {
	cmd.Execute()
}
