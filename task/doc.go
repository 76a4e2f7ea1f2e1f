// Package task runs named background workers that can be stopped, paused and
// resumed.
//
// Each worker receives a context that is cancelled on Stop and a [Signal]
// whose Wait method blocks while the task is paused:
//
//	s := task.NewScheduler()
//	s.Start("transmit", func(ctx context.Context, sig *task.Signal) {
//	    for sig.Wait(ctx) {
//	        // one unit of work
//	    }
//	})
//	s.Pause("transmit")
//	s.Resume("transmit")
//	s.Stop("transmit") // cancels and joins
//
// Stopping and pausing are independent: a paused worker that is stopped
// wakes up and sees Wait return false. A worker that returns on its own is
// reaped, and its name may be started again.
package task
