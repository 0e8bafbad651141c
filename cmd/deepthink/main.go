// Command deepthink answers questions with a planned panel of experts.
package main

func main() {
	Execute()
}
