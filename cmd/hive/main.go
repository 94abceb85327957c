// Command hive minimizes one-dimensional objectives with the Artificial Bee
// Colony algorithm, either as a one-shot run or as a job service.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
