// Package crawler runs crawl jobs: a profile timeline walked page by page,
// a one-shot account or hashtag search, or a single hashtag explore query.
//
// A job is strictly sequential. Continuation pages are requested only while
// the previous page reports has_next_page, each cursor is consumed at most
// once and cancellation is checked before every continuation request. When
// a profile crawl fails, the returned *JobError carries the partial
// aggregate and the last cursor that was merged.
//
//	c := crawler.New(client, cfg, log)
//	sess, err := c.Login(ctx, user, pass)
//	err = c.Run(ctx, sess, crawler.ProfileMode{UserID: "natgeo"}, sink)
package crawler
