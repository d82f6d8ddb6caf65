// Command pairhash prints the bcrypt hash of a pairing code for PAIRING_CODE_HASH.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pocketsafety/backend/pkg/utils"
)

func main() {
	code := flag.String("code", "", "pairing code to hash")
	flag.Parse()
	if *code == "" && flag.NArg() > 0 {
		*code = flag.Arg(0)
	}
	hash, err := utils.HashPassword(*code)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pairhash:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
