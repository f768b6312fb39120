// Package session authenticates a cookie session before any crawl.
//
// Bootstrap fetches the landing page to obtain the csrftoken cookie, posts
// the credentials with that token and checks the reply explicitly: a
// challenge, a two-factor prompt or "authenticated": false is an auth error,
// never a silently unauthenticated session.
package session
