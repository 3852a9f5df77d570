/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/jjudge-oj/todolist/cmd"

func main() {
	cmd.Execute()
}
