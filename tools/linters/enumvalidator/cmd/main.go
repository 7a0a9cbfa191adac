// Command enumvalidator reports string literals assigned to the session enums
// (Stage, Channel, Mode, Language).
//
//	go run ./tools/linters/enumvalidator/cmd ./...
package main

import (
	"empathos.app/relay/tools/linters/enumvalidator"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
