// This program is a command line wallet over the public api of a node.
package main

import "github.com/blockj/node/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
