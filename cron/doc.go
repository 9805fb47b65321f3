// Package cron runs recurring job submissions.
//
// A [Scheduler] holds named [Entry] values in memory. Each entry pairs a
// cron expression with a registered job kind and a static JSON payload;
// every time the expression fires, the scheduler submits a new job to the
// engine. The scheduler never executes work itself, so retries, priority
// and history all come from the engine.
//
// # Schedules
//
// Expressions use the standard 5-field cron syntax plus descriptors:
//
//	"0 2 * * *"     daily at 02:00
//	"@hourly"       at minute 0 of every hour
//	"@every 15m"    every 15 minutes from Start
//	"30 9 * * 1"    Mondays at 09:30
//
// [Daily], [Hourly], [Every] and [Weekly] build the common forms.
//
// # Registering
//
//	sched := cron.NewScheduler(eng.SubmitRaw, logger,
//	    cron.WithEmitter(eng.Extensions()))
//	cron.Register(sched, cron.Definition[BackupInput]{
//	    Name:     "daily-backup",
//	    Schedule: "0 2 * * *",
//	    JobName:  "backup",
//	    Payload:  BackupInput{Target: "s3"},
//	})
//	sched.Start(ctx)
//
// Entries can be paused, replaced and removed while the scheduler runs.
// [Scheduler.Entries] reports each entry's next run time.
package cron
