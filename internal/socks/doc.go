// Package socks routes crawler traffic through a SOCKS5 proxy.
//
// A Dialer validates the proxy address, can verify that the proxy speaks
// SOCKS5 before a crawl starts, and builds an http.Transport whose
// connections are made through the proxy. Host names are resolved by the
// proxy, so a Tor SOCKS port works as well as an ssh -D tunnel.
package socks
