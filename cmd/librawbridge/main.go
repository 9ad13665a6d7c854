// Command librawbridge builds the C shared library:
//
//	go build -buildmode=c-shared -o librawbridge.so ./cmd/librawbridge
//
// The exported symbols come from package capi.
package main

import "C"

import (
	_ "github.com/wippyai/rawbridge/capi"
)

func main() {}
