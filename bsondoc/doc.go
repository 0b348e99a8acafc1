// Package bsondoc: see types.go for the Value/Document shapes this
// package encodes, decodes, and orders.
package bsondoc
