package models

type State string

const (
	Init      State = "init"
	Thinking  State = "thinking"
	Executing State = "executing"
	Failed    State = "failed" // dead state
	Cancelled State = "cancelled"
	Finished  State = "finished"
)

func (s State) Terminal() bool {
	return s == Failed || s == Cancelled || s == Finished
}
