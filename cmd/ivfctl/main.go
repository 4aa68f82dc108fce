// Command ivfctl trains, fills and queries named IVF indexes kept in a blob
// store.
//
//	ivfctl --config ivfctl.toml train docs --file train.jsonl --nlist 64
//	ivfctl add docs --file docs.jsonl
//	ivfctl search docs --vector 0.1,0.2,0.3 -k 5 --nprobe 8 --filter lang=go
//	ivfctl stats docs
//	ivfctl list
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
