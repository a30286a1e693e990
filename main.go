package main

import "wechat_ai_editor/cmd"

func main() {
	cmd.Execute()
}
