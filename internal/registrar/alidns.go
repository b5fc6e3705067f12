package registrar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/alidns"
	"golang.org/x/net/publicsuffix"
)

// aliDNSAPI is the subset of *alidns.Client used here.
type aliDNSAPI interface {
	DescribeDomains(request *alidns.DescribeDomainsRequest) (*alidns.DescribeDomainsResponse, error)
	DescribeDomainNs(request *alidns.DescribeDomainNsRequest) (*alidns.DescribeDomainNsResponse, error)
}

// AliDNS treats Alibaba Cloud DNS as the hosting provider: a domain is found
// when it has been added to the account, and verified once its delegation
// points entirely at Alibaba Cloud name servers.
type AliDNS struct {
	api aliDNSAPI
}

func NewAliDNS(regionID, accessKeyID, accessKeySecret string, timeout time.Duration) (*AliDNS, error) {
	client, err := alidns.NewClientWithAccessKey(regionID, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("create alidns client: %w", err)
	}
	if timeout > 0 {
		client.SetConnectTimeout(timeout)
		client.SetReadTimeout(timeout)
	}
	return &AliDNS{api: client}, nil
}

// FindDomainByName looks up the zone that hosts name. Alibaba Cloud DNS
// manages apex zones, so subdomains such as www are reduced to eTLD+1.
func (a *AliDNS) FindDomainByName(ctx context.Context, name string) (*DomainRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = zoneOf(name)

	req := alidns.CreateDescribeDomainsRequest()
	req.KeyWord = name
	req.SearchMode = "EXACT"
	req.PageSize = requests.NewInteger(20)

	resp, err := a.api.DescribeDomains(req)
	if err != nil {
		return nil, fmt.Errorf("describe domains: %w", err)
	}
	for _, d := range resp.Domains.Domain {
		if strings.EqualFold(d.DomainName, name) {
			return &DomainRecord{ID: d.DomainId, Name: d.DomainName}, nil
		}
	}
	return nil, nil
}

func (a *AliDNS) VerifyDomain(ctx context.Context, domain *DomainRecord) (bool, error) {
	if domain == nil || domain.Name == "" {
		return false, fmt.Errorf("%w: domain record without name", ErrUnexpectedResponse)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	req := alidns.CreateDescribeDomainNsRequest()
	req.DomainName = domain.Name

	resp, err := a.api.DescribeDomainNs(req)
	if err != nil {
		return false, fmt.Errorf("describe domain ns: %w", err)
	}
	return resp.AllAliDns, nil
}

func zoneOf(name string) string {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
	if apex, err := publicsuffix.EffectiveTLDPlusOne(name); err == nil {
		return apex
	}
	return name
}
