package opera_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aretw0/opera"
	"github.com/aretw0/opera/pkg/adapters/chesscore"
)

// ExampleEngine_Run drives the protocol handshake from a scripted GUI.
func ExampleEngine_Run() {
	ctx := context.Background()

	eng, err := opera.New(ctx, opera.WithCore(chesscore.New()))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	script := "uci\nisready\nquit\n"

	var out strings.Builder
	if err := eng.Run(ctx, strings.NewReader(script), &out); err != nil {
		log.Fatal(err)
	}

	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "id ") || line == "uciok" || line == "readyok" {
			fmt.Println(line)
		}
	}
	// Output:
	// id name Opera
	// id author Opera Team
	// uciok
	// readyok
}
