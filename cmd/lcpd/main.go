// lcpd measures Largest Contentful Paint over HTTP.
//
// Usage:
//
//	lcpd serve --listen :3000
//	curl 'http://localhost:3000/lcp?url=https://example.com'
//
//	lcpd probe --url https://example.com --auditor cdp
package main

import "github.com/thesyncim/lcpd/cmd/lcpd/cli"

func main() {
	cli.Execute()
}
