package gateway

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
)

// LambdaTransport invokes capabilities deployed as Lambda functions,
// synchronously.
type LambdaTransport struct {
	api       lambdaiface.LambdaAPI
	functions map[Capability]string
}

// NewLambdaTransport creates a Lambda transport. functions maps each
// capability to a function name or ARN.
func NewLambdaTransport(api lambdaiface.LambdaAPI, functions map[Capability]string) *LambdaTransport {
	return &LambdaTransport{api: api, functions: functions}
}

// Invoke runs the function with body as its payload.
func (t *LambdaTransport) Invoke(ctx context.Context, c Capability, body []byte) ([]byte, error) {
	fn, ok := t.functions[c]
	if !ok || fn == "" {
		return nil, fmt.Errorf("no function configured for %s", c)
	}

	out, err := t.api.InvokeWithContext(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(fn),
		InvocationType: aws.String(lambda.InvocationTypeRequestResponse),
		Payload:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", fn, err)
	}
	if status := aws.Int64Value(out.StatusCode); status != 200 {
		return nil, fmt.Errorf("function %s returned status %d", fn, status)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("function %s failed (%s): %s", fn, aws.StringValue(out.FunctionError), truncateBody(out.Payload))
	}
	return out.Payload, nil
}
