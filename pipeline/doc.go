// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline turns chat lines into moderation actions.
//
// A chat line is a command when it starts with the sigil ("." by
// default). [Parse] splits it into an [Envelope]: the first token names
// a [Command] from a fixed vocabulary and the remaining tokens are
// positional arguments. Names outside the vocabulary are ignored, since
// other bots in the channel use the same sigil.
//
// [Pipeline.Handle] then, in order:
//
//   - looks up the requester's groups for their origin in the
//     permission store and checks them against the authorization
//     policy, replying with [DenialMessage] on failure;
//   - checks the argument count, replying with the command's usage;
//   - executes the command. Permission-store commands run inline;
//     content-site commands run on a bounded pool of worker goroutines
//     so the dispatcher keeps reading chat.
//
// Every outcome produces exactly one reply line on the outbound
// channel. Failures never escape the pipeline: remote errors and
// panics are logged with the request ID and reported to chat as a
// generic message. Remote commands are never retried.
package pipeline
