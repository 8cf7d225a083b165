package client

import "time"

// snoozeInterval is the bounded wait spec §4.6 calls for on a
// transient DELAY/GRACE reply before retrying the same operation.
const snoozeInterval = 5 * time.Second

// timeAfter is time.After, indirected so tests can shrink the snooze
// to something that doesn't make a unit test take five seconds.
var timeAfter = time.After

// timeNow is time.Now, indirected so directory-cache expiration tests
// don't have to sleep real wall-clock time.
var timeNow = time.Now
