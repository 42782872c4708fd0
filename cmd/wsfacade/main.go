// Command wsfacade is a small websocket client built on the wsconn connection facade. It also
// embeds the echo server used to exercise it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
