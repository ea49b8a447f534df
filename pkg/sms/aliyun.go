package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v3/client"
	"github.com/alibabacloud-go/tea/tea"
)

const (
	defaultRegion   = "cn-hangzhou"
	defaultEndpoint = "dysmsapi.aliyuncs.com"
	codeOK          = "OK"
)

// ErrTemplateMissing 模板键没有对应的模板编号
var ErrTemplateMissing = errors.New("sms: template not configured")

// AliyunConfig 阿里云短信参数
type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	RegionID        string
	Endpoint        string
	Templates       map[string]string
}

// sendAPI dysmsapi.Client 中用到的部分
type sendAPI interface {
	SendSms(req *dysmsapi.SendSmsRequest) (*dysmsapi.SendSmsResponse, error)
}

// AliyunSender 阿里云短信
type AliyunSender struct {
	api       sendAPI
	signName  string
	templates map[string]string
}

func NewAliyunSender(cfg *AliyunConfig) (*AliyunSender, error) {
	region, endpoint := cfg.RegionID, cfg.Endpoint
	if region == "" {
		region = defaultRegion
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	client, err := dysmsapi.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
		RegionId:        tea.String(region),
		Endpoint:        tea.String(endpoint),
	})
	if err != nil {
		return nil, fmt.Errorf("sms: new aliyun client: %w", err)
	}
	return newAliyunSender(client, cfg.SignName, cfg.Templates), nil
}

func newAliyunSender(api sendAPI, signName string, templates map[string]string) *AliyunSender {
	return &AliyunSender{api: api, signName: signName, templates: maps.Clone(templates)}
}

// Send SDK 不接受 context，只在发出请求前检查取消
func (s *AliyunSender) Send(ctx context.Context, phone, templateKey string, params map[string]string) error {
	code := s.templates[templateKey]
	if code == "" {
		return fmt.Errorf("%w: %s", ErrTemplateMissing, templateKey)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload := "{}"
	if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("sms: encode params: %w", err)
		}
		payload = string(raw)
	}

	resp, err := s.api.SendSms(&dysmsapi.SendSmsRequest{
		PhoneNumbers:  tea.String(phone),
		SignName:      tea.String(s.signName),
		TemplateCode:  tea.String(code),
		TemplateParam: tea.String(payload),
	})
	if err != nil {
		return fmt.Errorf("sms: send to %s: %w", phone, err)
	}
	if resp == nil || resp.Body == nil {
		return errors.New("sms: empty response")
	}
	if got := tea.StringValue(resp.Body.Code); got != codeOK {
		return fmt.Errorf("sms: rejected %s: %s", got, tea.StringValue(resp.Body.Message))
	}
	return nil
}
