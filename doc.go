// Package archiver packs heterogeneous inputs into tar or zip archives and
// extracts them again.
//
// Inputs can be file or directory paths, byte slices, readers, strings, or
// explicit [Descriptor] values naming and typing each item. The archive is
// returned as an in-memory buffer, a lazy stream, or written to a file.
// [Extract] reverses the operation into an existing directory.
//
// # Quick Start
//
// Archive a directory and a generated file into a zip buffer:
//
//	res, err := archiver.Archive(ctx, archiver.Batch(
//	    archiver.FromPath("./src"),
//	    archiver.FromDescriptor(archiver.Descriptor{
//	        Name: "VERSION",
//	        Type: archiver.TypeString,
//	        Data: "1.2.3\n",
//	    }),
//	))
//	if err != nil {
//	    return err
//	}
//	// res.Bytes holds the archive, res.Digest its sha256 digest.
//
// Stream a tar to an HTTP response without buffering it:
//
//	res, err := archiver.Archive(ctx, archiver.FromPath("./logs"),
//	    archiver.WithFormat(archiver.FormatTar),
//	    archiver.WithOutput(archiver.OutputStream),
//	)
//	if err != nil {
//	    return err
//	}
//	defer res.Stream.Close()
//	_, err = io.Copy(w, res.Stream)
//
// Extract it again:
//
//	err = archiver.Extract(ctx, archiver.SourcePath("logs.tar"), "./restore",
//	    archiver.ExtractWithFormat(archiver.FormatTar),
//	)
//
// # Naming
//
// Paths are named by their base name and directories expand recursively
// beneath it. Buffers, streams and strings without a descriptor name are
// named by their position among such nameless items: "0", "1", and so on.
// Entry names must be unique within an archive.
//
// # Safety
//
// Extraction never writes outside the destination: entries whose names are
// absolute or climb out with ".." fail with [ErrPathTraversal]. Use
// [ExtractWithMaxEntries] and [ExtractWithMaxBytes] to bound untrusted
// archives.
//
// # Resource ownership
//
// Readers passed as inputs or sources are owned by the operation. When they
// implement [io.Closer] they are closed exactly once, whether the operation
// succeeds or fails.
package archiver
