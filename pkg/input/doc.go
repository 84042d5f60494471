// Package input provides mouse and keyboard drivers built as frp networks.
//
// Platform code (a browser bridge, a windowing toolkit, a test) pushes raw
// events into the driver's sources; application code consumes the derived
// streams and behaviors.
//
//	mouse := input.NewMouse(net)
//	frp.ForEach(net, frp.Gate(net, mouse.Position.Stream, mouse.Pressed), drag)
//
//	kb := input.NewKeyboard(net)
//	undo := kb.Shortcut(input.NewKeyMask(input.KeyControl, "z"))
package input
