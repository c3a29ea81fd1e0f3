// Package model contains the interfaces shared by the packages of
// this repository.
//
// # Criteria for adding a type to this package
//
// This package should only contain interfaces (and the small amount
// of data they need) that are used by more than one package, with the
// objective of separating unrelated pieces of code and making unit
// testing easier through the mocks subpackage.
//
// # Content of this package
//
// - logger.go: definition of an apex/log compatible logger;
//
// - netx.go: the plaintext dialer, the TLS connection and the TLS
// engine abstractions used to build secure connections.
package model
