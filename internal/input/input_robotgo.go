//go:build windows || darwin || (linux && cgo)

package input

import "github.com/go-vgo/robotgo"

type robotgoController struct{}

func newController() Controller { return robotgoController{} }

func (robotgoController) MoveMouse(x, y int) { robotgo.Move(x, y) }

func (robotgoController) Click(button string) { robotgo.Click(button) }

func (robotgoController) KeyDown(key string) { _ = robotgo.KeyToggle(key, "down") }

func (robotgoController) KeyUp(key string) { _ = robotgo.KeyToggle(key, "up") }

func (robotgoController) Scroll(dy int) { robotgo.Scroll(0, dy) }

func (robotgoController) TypeString(s string) { robotgo.TypeStr(s) }

func (robotgoController) MousePos() (int, int) { return robotgo.GetMousePos() }

func (robotgoController) ReadClipboard() (string, error) { return robotgo.ReadAll() }

func (robotgoController) WriteClipboard(text string) error { return robotgo.WriteAll(text) }
