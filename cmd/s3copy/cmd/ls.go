package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/hierarchy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/operations/list"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

const s3Scheme = "s3://"

// lsCmd represents the ls command
var lsCmd = &cobra.Command{
	Use:   "ls s3://bucket[/prefix]",
	Short: "List the objects a copy item would expand to",
	Long: `List every object under a prefix. When the prefix is empty or ends in
"/", the listing is filtered the way a copy item with that key is expanded:
the folder marker object named by the prefix itself is left out.

Example:
  s3copy ls s3://logs/2024/
  s3copy ls s3://logs/2024/ --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := parseS3URI(args[0])
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		bucketRegion, _ := cmd.Flags().GetString("bucket-region")
		loc.Region = bucketRegion

		client, err := clientFromConfig(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}

		objects, err := listObjects(cmd.Context(), list.New(client, list.MaxPageSize), loc)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", args[0], err)
		}

		if asJSON {
			return printJSON(cmd.OutOrStdout(), objects)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, obj := range objects {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				obj.LastModified.Format("2006-01-02 15:04:05"), obj.Size, obj.StorageClass, obj.Key)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d object(s)\n", len(objects))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().Bool("json", false, "output in JSON format")
	lsCmd.Flags().String("bucket-region", "", "region of the bucket, when it differs from --region")
}

// listObjects returns every object under loc.Key. A prefix copy item skips
// the marker object named by its own key, so the same filter applies here.
func listObjects(ctx context.Context, lister *list.Lister, loc s3types.Location) ([]s3types.Object, error) {
	keep := func(string, s3types.Object) bool { return true }
	if loc.Key == "" || strings.HasSuffix(loc.Key, "/") {
		keep = hierarchy.DefaultFilter
	}

	var objects []s3types.Object
	for r := range lister.ListAll(ctx, &list.Config{Bucket: loc.Bucket, Region: loc.Region, Prefix: loc.Key}) {
		if r.Err != nil {
			return nil, r.Err
		}
		if keep(loc.Key, r.Object) {
			objects = append(objects, r.Object)
		}
	}
	return objects, ctx.Err()
}

// parseS3URI splits s3://bucket/key into a Location.
func parseS3URI(uri string) (s3types.Location, error) {
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return s3types.Location{}, fmt.Errorf("invalid S3 URI %q: must start with %s", uri, s3Scheme)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if err := validation.ValidateBucketName(bucket); err != nil {
		return s3types.Location{}, fmt.Errorf("invalid S3 URI %q: %w", uri, err)
	}
	return s3types.Location{Bucket: bucket, Key: key}, nil
}
