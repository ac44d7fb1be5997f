// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/bootlace/bootlace/cmd/bootlace"

func main() {
	cmd.Execute()
}
