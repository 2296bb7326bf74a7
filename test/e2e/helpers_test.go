//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GetAWSConfig returns the shared AWS config pointing to LocalStack
func GetAWSConfig(t *testing.T) aws.Config {
	if awsCfg.Region == "" {
		t.Fatal("AWS Config not initialized (TestMain didn't run?)")
	}
	return awsCfg
}

// ProvisionTable creates the single-table record store schema in LocalStack
// and waits for it to become active.
func ProvisionTable(t *testing.T, client *dynamodb.Client, name string) {
	t.Helper()

	_, err := client.CreateTable(context.TODO(), &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []dynamotypes.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: dynamotypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: dynamotypes.ScalarAttributeTypeS},
		},
		KeySchema: []dynamotypes.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: dynamotypes.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: dynamotypes.KeyTypeRange},
		},
		BillingMode: dynamotypes.BillingModePayPerRequest,
	})
	if err != nil {
		t.Fatalf("Failed to create table %s: %v", name, err)
	}

	for i := 0; i < 30; i++ {
		out, err := client.DescribeTable(context.TODO(), &dynamodb.DescribeTableInput{
			TableName: aws.String(name),
		})
		if err == nil && out.Table.TableStatus == dynamotypes.TableStatusActive {
			t.Logf("Table %s active", name)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("Table %s never became active", name)
}

// ProvisionBucket creates an S3 bucket for snapshot archiving.
func ProvisionBucket(t *testing.T, client *s3.Client, name string) {
	t.Helper()
	_, err := client.CreateBucket(context.TODO(), &s3.CreateBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		t.Fatalf("Failed to create bucket %s: %v", name, err)
	}
}

// GetBinaryPath builds the CLI and returns the binary path
func GetBinaryPath(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "dmpsync")
	// Navigate to root
	rootDir := "../../"
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/dmpsync")
	cmd.Dir = rootDir
	// Inherit env
	cmd.Env = os.Environ()

	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Build failed: %s", out)
	}
	return binPath
}

// uniqueName suffixes a resource name so parallel test runs cannot collide.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
