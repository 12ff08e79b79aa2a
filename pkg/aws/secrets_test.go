package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	value *string
	err   error
	calls int
}

func (f *fakeSecrets) GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestGetSecretJSON_CachesDecodedValues(t *testing.T) {
	api := &fakeSecrets{value: sdkaws.String(`{"JWT_SECRET":"s3cr3t","POSTGRES_DSN":"host=db"}`)}
	client := newSecretsClient(api)

	values, err := client.GetSecretJSON(context.Background(), "shopflow/config")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", values["JWT_SECRET"])

	values["JWT_SECRET"] = "changed"
	again, err := client.GetSecretJSON(context.Background(), "shopflow/config")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", again["JWT_SECRET"])
	assert.Equal(t, 1, api.calls)
}

func TestGetSecretJSON_Errors(t *testing.T) {
	_, err := newSecretsClient(&fakeSecrets{err: errors.New("denied")}).GetSecretJSON(context.Background(), "x")
	assert.ErrorContains(t, err, "denied")

	_, err = newSecretsClient(&fakeSecrets{}).GetSecretJSON(context.Background(), "x")
	assert.ErrorContains(t, err, "binary")

	_, err = newSecretsClient(&fakeSecrets{value: sdkaws.String(`["a"]`)}).GetSecretJSON(context.Background(), "x")
	assert.ErrorContains(t, err, "flat JSON object")
}
