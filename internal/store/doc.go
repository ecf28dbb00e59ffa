// Package store persists pipeline snapshots so a stack can be reopened
// without refining it again.
//
// Two backends are provided:
//
//   - FileStore writes one gzip-compressed gob file per stack, named after
//     the frame source with a ".trak" suffix.
//   - SQLiteStore keeps any number of stacks in one SQLite database, keyed
//     by source, with grids stored as blobs and the graph as rows.
//
// Neither backend checks whether a snapshot still fits the frames it is
// restored for. That is pipeline.Restore's job.
package store
