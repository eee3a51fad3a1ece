// Package migrator discovers migration scripts and turns them into an
// in-memory catalog.
//
// Scripts are plain SQL files whose names follow a strict grammar:
//
//	V<version>__<description>.sql   versioned, applied at most once
//	U<version>__<description>.sql   undo, catalogued but never planned
//	R__<description>.sql            repeatable, re-applied when its checksum changes
//
// Versions are made of digits and dots and compare segment by segment as
// integers, so 1.10 sorts after 1.9 and 1 is equal to 1.0. Underscores in the
// description are presented as spaces.
//
// Scripts are read from one or more Source implementations. NewFSSource works
// with any fs.FS, which covers regular directories, embedded files and test
// fixtures:
//
//	//go:embed db/migrations/*.sql
//	var migrations embed.FS
//
//	catalog, err := migrator.LoadCatalog(ctx,
//	    migrator.NewFSSource("embedded", migrations),
//	    migrator.NewDirSource("db/hotfixes"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, script := range catalog.Versioned() {
//	    fmt.Println(script.Version, script.Description, script.Checksum)
//	}
//
// Every script carries a CRC-32 checksum of its exact bytes. No line ending
// normalization is performed, so the same file checked out with different
// line endings produces different checksums.
//
// Invalid names, missing or forbidden versions, and two scripts claiming the
// same version with different descriptions fail with ErrInvalidArtifactName.
package migrator
