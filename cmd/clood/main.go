package main

import (
	"github.com/clood-dev/clood/internal/cli"
	"github.com/clood-dev/clood/internal/common/logtrace"
)

func init() {
	logtrace.InitLogger()
}

func main() {
	cli.Execute()
}
