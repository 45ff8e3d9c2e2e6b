// Package track implements the trackable entity hierarchy: a Job owns
// Tasks, a Task owns Steps, and every entity persists a tracking
// document through the checkpoint.Backend it is bound to.
//
// Jobs never store a status of their own; their state is always derived
// from the task and step documents beneath them via Progress and
// History. Tasks and steps share the status state machine: not-started
// and running may move anywhere, completed and failed are terminal.
//
// Constructing an entity whose document already exists restores its
// recorded state, which is how a restarted process resumes where it
// left off:
//
//	j, _ := track.NewJob(ctx, be, "nightly")
//	tk, _ := j.Task(ctx, "logs-000001")
//	st, _ := tk.Step(ctx, "copy-docs")
//	if done, _ := st.Finished(ctx); done {
//	    return nil // already completed in a previous run
//	}
package track
