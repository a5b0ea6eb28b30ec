//go:build !linux

package ffs

import "github.com/gadgetd/gadgetd/internal/gadgeterr"

func mountFunctionFS(instanceName, dir string) error {
	return gadgeterr.New("mountFunctionFS", gadgeterr.NotSupported, nil)
}

func unmountFunctionFS(dir string) error {
	return gadgeterr.New("unmountFunctionFS", gadgeterr.NotSupported, nil)
}
