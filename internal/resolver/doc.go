// Package resolver constructs the DNS resolvers used by the discovery
// strategies: the platform *net.Resolver with optional SOCKS5 tunnelling to
// prevent DNS leaks, and a miekg/dns based resolver that queries explicit
// nameservers.
package resolver
