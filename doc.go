// Package s3copy copies S3 objects and whole prefixes between buckets,
// regions and storage classes, entirely server side.
//
// A Request lists copy items plus shared defaults. Each item addresses a
// single object or, when its key ends in "/", every object under that
// prefix. The Orchestrator expands prefixes page by page into an ordered
// task queue and copies with bounded parallelism.
//
// Per object, the copy:
//   - merges source headers, ACL and tags with caller values under a
//     Copy, Add or Replaced directive
//   - derives the target key from a template such as
//     "archive/${RelativeKey}"
//   - switches to a multipart copy for large objects, or for smaller ones
//     when the copy changes region, storage class or encryption
//   - optionally deletes the source once the target's checksum matches
//
// Interceptors see every resolved copy before it is issued and may proceed,
// skip or fail it.
//
// Example usage:
//
//	client, err := s3copy.NewClient(ctx)
//	if err != nil {
//	    return err
//	}
//
//	o := s3copy.New(client, s3copy.WithParallel(8))
//	resp, err := o.Run(ctx, &s3types.Request{
//	    Items: []s3types.CopyItem{
//	        {Source: s3types.Location{Bucket: "logs", Key: "2024/"}},
//	    },
//	    Defaults: s3types.Defaults{
//	        TargetBucket:      "archive",
//	        TargetKeyTemplate: "logs/${Key}",
//	        StorageClass:      s3types.StorageClassGlacierIR,
//	    },
//	})
package s3copy
