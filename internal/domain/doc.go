// Package domain holds the core types shared by the scheduler, launch
// coordinator, dispatcher and reconciler: campaigns, their content
// sections, recipient attachments, and queued send items. Nothing in
// this package touches a database or the network.
package domain
