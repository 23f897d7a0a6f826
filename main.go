// main.go
package main

import "github.com/davem/wrenchd/cmd"

func main() {
	cmd.Execute()
}
