//go:build !linux

package ingest

import "os"

func adviseSequential(*os.File) {}
